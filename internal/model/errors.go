package model

import "github.com/rotisserie/eris"

// Failure taxonomy. None of these abort a run; they degrade a batch,
// a candidate or a single reference.
var (
	ErrTransport           = eris.New("generation call failed")
	ErrMalformedOutput     = eris.New("generated output unparseable")
	ErrValidationRejection = eris.New("candidate rejected by validation")
	ErrUnresolvedReference = eris.New("sample reference not in registry")
	ErrEmptyEvidence       = eris.New("trigger has no resolvable evidence")
	ErrNoSuccessfulBatch   = eris.New("no batch completed successfully")
)

// ModelUnavailable is reported as the model identifier when every batch failed
const ModelUnavailable = "unavailable"
