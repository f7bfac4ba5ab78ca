package handlers

import "errors"

var (
	// ErrInvalidPayload is returned when a handler's payload fails a
	// domain check beyond the registry's field-presence validation.
	ErrInvalidPayload = errors.New("handlers: invalid payload")

	ErrSendEmailFailed       = errors.New("handlers: send email failed")
	ErrDeliverWebhookFailed  = errors.New("handlers: webhook delivery failed")
	ErrArchiveUploadFailed   = errors.New("handlers: archive upload failed")
	ErrIndexDocumentFailed   = errors.New("handlers: index document failed")
	ErrArchiveToMongoFailed  = errors.New("handlers: archive to mongo failed")
	ErrGenerateQRCodeFailed  = errors.New("handlers: qr code generation failed")
	ErrProcessBillingWebhook = errors.New("handlers: billing webhook processing failed")
)
