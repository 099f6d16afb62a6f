package bankconnect

import "github.com/FACorreiaa/bankconnect-go/pkg/apperror"

// Failure kinds, matched with errors.Is.
var (
	ErrInvalidArgument    = apperror.ErrInvalidArgument
	ErrNotYetUploaded     = apperror.ErrNotYetUploaded
	ErrEntityNotFound     = apperror.ErrEntityNotFound
	ErrExtractionFailed   = apperror.ErrExtractionFailed
	ErrServiceTimeout     = apperror.ErrServiceTimeout
	ErrServiceFailed      = apperror.ErrServiceFailed
	ErrFormatChanged      = apperror.ErrFormatChanged
	ErrInvalidBankName    = apperror.ErrInvalidBankName
	ErrPasswordIncorrect  = apperror.ErrPasswordIncorrect
	ErrUnparsablePDF      = apperror.ErrUnparsablePDF
	ErrCannotIdentifyBank = apperror.ErrCannotIdentifyBank
	ErrFileProcessFailed  = apperror.ErrFileProcessFailed
)
