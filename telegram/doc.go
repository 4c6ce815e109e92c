// Package telegram parses Telegram Desktop chat exports and normalizes
// their records into canonical messages.
//
// ParseExport performs structural validation only: the payload must be a
// JSON object with a messages array. Record-level problems (missing
// timestamps, unusable senders, empty text) are handled by the Normalizer,
// which drops the offending record and counts it instead of failing the run.
package telegram
