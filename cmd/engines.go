package cmd

import (
	"github.com/lehigh-university-libraries/tabocr/pkg/azure"
	"github.com/lehigh-university-libraries/tabocr/pkg/ocr"
	"github.com/lehigh-university-libraries/tabocr/pkg/tesseract"
	"github.com/lehigh-university-libraries/tabocr/pkg/vision"
)

// newRegistry returns a registry with every built-in engine.
func newRegistry() *ocr.Registry {
	registry := ocr.NewRegistry()
	registry.Register(tesseract.New())
	registry.Register(vision.New())
	registry.Register(azure.New())
	return registry
}

// closeEngine releases engines that hold a client connection.
func closeEngine(engine ocr.Engine) {
	if c, ok := engine.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
