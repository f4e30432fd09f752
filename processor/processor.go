// Package processor provides content processing implementations.
package processor

import "github.com/ZaguanLabs/transcache"

// ContentProcessor is an alias to the main package interface.
type ContentProcessor = transcache.ContentProcessor

// TextNode is an alias to the main package type.
type TextNode = transcache.TextNode

// Node types reported on extracted TextNodes.
const (
	NodeTypeText      = "html_text"
	NodeTypeAttribute = "html_attr"
)
