package service

import (
	"fmt"
)

type ErrDocumentNotFound struct {
	error
}

func NewErrDocumentNotFound(id int) *ErrDocumentNotFound {
	return &ErrDocumentNotFound{fmt.Errorf("document %d not found", id)}
}

type ErrReviewItemNotFound struct {
	error
}

func NewErrReviewItemNotFound(documentID int) *ErrReviewItemNotFound {
	return &ErrReviewItemNotFound{fmt.Errorf("no pending review entry for document %d", documentID)}
}
