package image

import (
	"fmt"
	"strings"
)

// CataloguePrompt composes the single instruction sent with the source photo.
func CataloguePrompt(description, style string) string {
	return fmt.Sprintf(
		"Transforma esta imagen de producto en una foto de catálogo premium. Estilo: %s. %s. Mantén el producto como foco principal pero mejora la iluminación y el fondo.",
		strings.TrimSpace(style),
		strings.TrimSpace(description),
	)
}
