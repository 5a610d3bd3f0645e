package document

import "errors"

var (
	// ErrAlreadyProcessing guards against two concurrent attempts on one document.
	ErrAlreadyProcessing = errors.New("document is already being processed")

	// ErrImagePreparation covers unreadable sources and page conversion yielding no image.
	ErrImagePreparation = errors.New("image preparation failed")

	// ErrExtractionFormat marks a model reply that is not valid JSON of the expected shape.
	ErrExtractionFormat = errors.New("extraction reply has invalid format")

	// ErrExtractionTransport marks network, auth, quota and timeout failures calling the model.
	ErrExtractionTransport = errors.New("extraction transport failed")
)
