package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           imaged API
// @version         1.0
// @description     HTTP API for accelerator-resident image generation with single-slot model residency.
//
// @contact.name   imaged maintainers
// @contact.url    https://github.com/your-org/imaged
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
