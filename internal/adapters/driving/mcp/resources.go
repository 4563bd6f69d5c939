package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for sercha-rag resources.
	uriScheme = "sercha-rag://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "owners/{owner_id}/documents/{document_id}",
		Name:        "document-content",
		Description: "Text of a stored document, reassembled from its chunks",
		MIMEType:    "text/plain",
	}, s.handleDocumentContentResource)
}

// handleDocumentContentResource returns the content of a specific document.
func (s *Server) handleDocumentContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	ownerID, docID := parseDocumentURI(req.Params.URI)
	if ownerID == "" || docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	content, err := s.ports.Retrieval.Content(ctx, docID, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document content: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     content,
		}},
	}, nil
}

// parseDocumentURI splits sercha-rag://owners/{owner_id}/documents/{document_id}.
func parseDocumentURI(uri string) (ownerID, docID string) {
	rest, ok := strings.CutPrefix(uri, uriScheme+"owners/")
	if !ok {
		return "", ""
	}
	ownerID, docID, ok = strings.Cut(rest, "/documents/")
	if !ok || strings.Contains(docID, "/") {
		return "", ""
	}
	return ownerID, docID
}
