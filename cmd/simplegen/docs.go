package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           simplegen API
// @version         1.0
// @description     HTTP API for batch text generation and multi-turn chat on local GGUF models.
//
// @contact.name   simplegen maintainers
// @contact.url    https://github.com/your-org/simplegen
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
