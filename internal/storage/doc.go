/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists the design document.
// A BlobStore keeps one serialized document per key (SQLite, Postgres or memory).
// The Repository on top of it decodes, migrates and validates what it loads, and the
// Autosaver writes the editor's document back whenever its revision changes.
// Document files for exchange are written transactionally with timestamped backups.
package storage
