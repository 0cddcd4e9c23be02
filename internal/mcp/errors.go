// Package mcp serves the semantic index over the Model Context Protocol.
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// Custom MCP error codes for semidx.
const (
	// ErrCodeIndexUnavailable indicates the index cannot be read.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a file no longer exists on disk.
	ErrCodeFileNotFound = -32004

	// ErrCodeBusy indicates another process holds the index write lock.
	ErrCodeBusy = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var mcpErr *MCPError
	if stderrors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case stderrors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	if ie, ok := errors.As(err); ok {
		return mapIndexError(ie)
	}
	return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func mapIndexError(ie *errors.IndexError) *MCPError {
	message := ie.Message
	if ie.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ie.Message, ie.Suggestion)
	}

	switch ie.Category {
	case errors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case errors.CategoryEmbeddingProvider:
		if ie.Code == errors.ErrCodeProviderTimeout {
			return &MCPError{Code: ErrCodeTimeout, Message: message}
		}
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	case errors.CategoryIO:
		switch ie.Code {
		case errors.ErrCodeFileNotFound:
			return &MCPError{Code: ErrCodeFileNotFound, Message: message}
		case errors.ErrCodeLockHeld:
			return &MCPError{Code: ErrCodeBusy, Message: message}
		case errors.ErrCodeBinaryContent:
			return &MCPError{Code: ErrCodeInvalidParams, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	case errors.CategoryStorage:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
