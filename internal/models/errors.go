package models

import "errors"

// ErrUnsupportedDocument is returned by translators that cannot read a document type
var ErrUnsupportedDocument = errors.New("document type not supported by provider")
