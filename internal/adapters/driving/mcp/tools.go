package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	OwnerID         string `json:"owner_id" jsonschema:"owner whose documents are searched"`
	Query           string `json:"query" jsonschema:"the text to find similar chunks for"`
	K               int    `json:"k,omitempty" jsonschema:"maximum number of results (default 5, at most 1000)"`
	IncludeInactive bool   `json:"include_inactive,omitempty" jsonschema:"also search soft-deleted documents"`
	MIMEType        string `json:"mime_type,omitempty" jsonschema:"only search documents of this media type"`
	ConversationID  string `json:"conversation_id,omitempty" jsonschema:"only search documents of this conversation"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID     string  `json:"document_id"`
	FileName       string  `json:"file_name"`
	URI            string  `json:"uri"`
	ConversationID string  `json:"conversation_id"`
	Page           int     `json:"page"`
	Score          float64 `json:"score"`
	Content        string  `json:"content"`
}

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	OwnerID        string `json:"owner_id" jsonschema:"owner of the new document"`
	ConversationID string `json:"conversation_id" jsonschema:"conversation the document belongs to"`
	Text           string `json:"text" jsonschema:"document content"`
	FileName       string `json:"file_name,omitempty" jsonschema:"display name (default: derived from uri)"`
	MIMEType       string `json:"mime_type,omitempty" jsonschema:"media type of text (default text/plain)"`
	URI            string `json:"uri,omitempty" jsonschema:"original location of the content"`
	DocumentID     string `json:"document_id,omitempty" jsonschema:"UUID to store the document under"`
}

// IngestTextOutput is the output schema for the ingest_text tool.
type IngestTextOutput struct {
	DocumentID   string `json:"document_id"`
	ChunkCount   int    `json:"chunk_count"`
	MissingPages []int  `json:"missing_pages,omitempty"`
}

// GetDocumentInput is the input schema for the get_document tool.
type GetDocumentInput struct {
	OwnerID        string `json:"owner_id" jsonschema:"owner of the document"`
	DocumentID     string `json:"document_id" jsonschema:"document to fetch"`
	IncludeContent bool   `json:"include_content,omitempty" jsonschema:"also return the reassembled text"`
}

// DocumentOutput describes a stored document.
type DocumentOutput struct {
	ID             string         `json:"id"`
	FileName       string         `json:"file_name"`
	MIMEType       string         `json:"mime_type"`
	URI            string         `json:"uri"`
	ConversationID string         `json:"conversation_id"`
	Active         bool           `json:"active"`
	ChunkCount     int            `json:"chunk_count,omitempty"`
	MissingPages   []int          `json:"missing_pages,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
	Content        string         `json:"content,omitempty"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	OwnerID         string `json:"owner_id" jsonschema:"owner whose documents are listed"`
	ConversationID  string `json:"conversation_id,omitempty" jsonschema:"only list this conversation"`
	Query           string `json:"query,omitempty" jsonschema:"case-insensitive file name substring"`
	MIMEType        string `json:"mime_type,omitempty" jsonschema:"only list this media type"`
	IncludeInactive bool   `json:"include_inactive,omitempty" jsonschema:"also list soft-deleted documents"`
	Limit           int    `json:"limit,omitempty" jsonschema:"maximum number of documents (default 50)"`
	Offset          int    `json:"offset,omitempty" jsonschema:"documents to skip"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DeleteDocumentInput is the input schema for the delete_document tool.
type DeleteDocumentInput struct {
	OwnerID    string `json:"owner_id" jsonschema:"owner of the document"`
	DocumentID string `json:"document_id" jsonschema:"document to delete"`
	Hard       bool   `json:"hard,omitempty" jsonschema:"remove the document and its chunks instead of marking it inactive"`
}

// DeleteConversationInput is the input schema for the delete_conversation tool.
type DeleteConversationInput struct {
	OwnerID        string `json:"owner_id" jsonschema:"owner of the documents"`
	ConversationID string `json:"conversation_id" jsonschema:"conversation whose documents are deleted"`
	Permanent      bool   `json:"permanent,omitempty" jsonschema:"remove documents instead of marking them inactive"`
}

// DeleteOutput is the output schema for the delete tools.
type DeleteOutput struct {
	DeletedCount int    `json:"deleted_count"`
	Message      string `json:"message"`
}

// defaultListLimit applies when list_documents is called without a limit.
const defaultListLimit = 50

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the chunks of an owner's documents most similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Show a document's details and optionally its text",
	}, s.handleGetDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List an owner's documents, most recently updated first",
	}, s.handleListDocuments)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_text",
			Description: "Chunk, embed and store text as a new document",
		}, s.handleIngestText)
	}

	if s.ports.Lifecycle != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "delete_document",
			Description: "Soft delete a document, or remove it with hard=true",
		}, s.handleDeleteDocument)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "delete_conversation",
			Description: "Delete every document of an owner in a conversation",
		}, s.handleDeleteConversation)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	req := domain.NewSearchRequest(input.Query, input.OwnerID, input.K)
	req.ActiveOnly = !input.IncludeInactive
	req.MIMEType = input.MIMEType
	req.ConversationID = input.ConversationID

	hits, err := s.ports.Retrieval.Search(ctx, req)
	if err != nil {
		return nil, SearchOutput{}, toolError(err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(hits)),
		Count:   len(hits),
	}
	for i := range hits {
		output.Results[i] = SearchResultOutput{
			DocumentID:     hits[i].DocumentID,
			FileName:       hits[i].Document.FileName,
			URI:            hits[i].Document.URI,
			ConversationID: hits[i].Document.ConversationID,
			Page:           hits[i].Page,
			Score:          hits[i].Score,
			Content:        hits[i].Content,
		}
	}

	return nil, output, nil
}

func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestTextOutput, error) {
	mimeType := input.MIMEType
	if mimeType == "" {
		mimeType = "text/plain"
	}
	uri := input.URI
	if uri == "" {
		uri = "mcp:ingest_text"
		if input.FileName != "" {
			uri += "/" + input.FileName
		}
	}

	res, err := s.ports.Ingest.Ingest(ctx, []byte(input.Text), domain.IngestMetadata{
		DocumentID:     input.DocumentID,
		FileName:       input.FileName,
		MIMEType:       mimeType,
		URI:            uri,
		OwnerID:        input.OwnerID,
		ConversationID: input.ConversationID,
	})
	if err != nil {
		return nil, IngestTextOutput{}, toolError(err)
	}

	return nil, IngestTextOutput{
		DocumentID:   res.Document.ID,
		ChunkCount:   res.ChunkCount,
		MissingPages: res.MissingPages,
	}, nil
}

func (s *Server) handleGetDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	details, err := s.ports.Retrieval.Get(ctx, input.DocumentID, input.OwnerID)
	if err != nil {
		return nil, DocumentOutput{}, toolError(err)
	}

	out := documentOutput(&details.Document)
	out.ChunkCount = details.ChunkCount
	out.MissingPages = details.MissingPages

	if input.IncludeContent {
		content, err := s.ports.Retrieval.Content(ctx, input.DocumentID, input.OwnerID)
		if err != nil {
			return nil, DocumentOutput{}, toolError(err)
		}
		out.Content = content
	}

	return nil, out, nil
}

func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	docs, err := s.ports.Retrieval.List(ctx, domain.DocumentFilter{
		OwnerID:        input.OwnerID,
		ConversationID: input.ConversationID,
		Query:          input.Query,
		MIMEType:       input.MIMEType,
		ActiveOnly:     !input.IncludeInactive,
		Limit:          limit,
		Offset:         input.Offset,
	})
	if err != nil {
		return nil, ListDocumentsOutput{}, toolError(err)
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = documentOutput(&docs[i])
	}
	return nil, output, nil
}

func (s *Server) handleDeleteDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteDocumentInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	var err error
	if input.Hard {
		err = s.ports.Lifecycle.HardDelete(ctx, input.DocumentID, input.OwnerID)
	} else {
		err = s.ports.Lifecycle.SoftDelete(ctx, input.DocumentID, input.OwnerID)
	}
	if err != nil {
		return nil, DeleteOutput{}, toolError(err)
	}

	return nil, DeleteOutput{
		DeletedCount: 1,
		Message:      services.DeletedMessage(1, input.Hard),
	}, nil
}

func (s *Server) handleDeleteConversation(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteConversationInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	n, err := s.ports.Lifecycle.DeleteAllForConversation(ctx, input.ConversationID, input.OwnerID, input.Permanent)
	if err != nil {
		return nil, DeleteOutput{}, toolError(err)
	}

	return nil, DeleteOutput{
		DeletedCount: n,
		Message:      services.DeletedMessage(n, input.Permanent),
	}, nil
}

func documentOutput(doc *domain.Document) DocumentOutput {
	return DocumentOutput{
		ID:             doc.ID,
		FileName:       doc.FileName,
		MIMEType:       doc.MIMEType,
		URI:            doc.URI,
		ConversationID: doc.ConversationID,
		Active:         doc.Active,
		Metadata:       doc.Metadata,
		CreatedAt:      doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      doc.UpdatedAt.Format(time.RFC3339),
	}
}
