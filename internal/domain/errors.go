package domain

import "errors"

var (
	// ErrClassifierUnavailable means the model or its vocabulary never loaded.
	// It is the only condition that stops a response from being produced.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrPredictionFailed means the classifier was invoked and errored.
	ErrPredictionFailed = errors.New("prediction failed")

	// ErrDetectionFailed means the landmark detector could not process a frame.
	ErrDetectionFailed = errors.New("landmark detection failed")

	// ErrSynthesisFailed means speech synthesis errored or returned no audio.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrLedgerWriteFailed means a ledger sink did not persist a record.
	ErrLedgerWriteFailed = errors.New("ledger write failed")

	// ErrLedgerUnavailable means no structured sink is configured for reads.
	ErrLedgerUnavailable = errors.New("ledger store unavailable")

	// ErrCacheIO is a read or write failure of the audio store.
	ErrCacheIO = errors.New("audio cache io failed")

	// ErrCacheMiss is returned by audio stores when a key is absent.
	ErrCacheMiss = errors.New("audio cache miss")

	// ErrEmptyText is returned when text is blank after trimming.
	ErrEmptyText = errors.New("text is empty")
)
