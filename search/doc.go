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


// Package search provides hybrid retrieval over archived conversation
// documents.
//
// The Searcher type combines two signals for each candidate:
//   - Vector similarity between the embedded query and stored document
//     embeddings
//   - Keyword overlap between the query terms and the document body,
//     with stop-word filtering
//
// The two signals are blended into a single score with a configurable
// alpha weight, filtered by a caller-supplied threshold, and ranked
// descending before the top results are returned.
package search
