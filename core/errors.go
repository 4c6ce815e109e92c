// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidExport indicates an export payload is not structurally valid.
	ErrInvalidExport = errors.New("invalid export structure")

	// ErrMissingMessages indicates an export has no message collection.
	ErrMissingMessages = errors.New("export contains no messages")

	// ErrInvalidMessage indicates a Message failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrMissingSender indicates a message has no sender identity.
	ErrMissingSender = errors.New("message has no sender")

	// ErrMissingTimestamp indicates a message has no usable timestamp.
	ErrMissingTimestamp = errors.New("message has no timestamp")

	// ErrEmptyContent indicates the text content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyThread indicates a thread contains no messages.
	ErrEmptyThread = errors.New("thread contains no messages")

	// ErrInvalidThread indicates a Thread failed validation.
	ErrInvalidThread = errors.New("invalid thread")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyBody indicates a document body is empty.
	ErrEmptyBody = errors.New("document body cannot be empty")
)
