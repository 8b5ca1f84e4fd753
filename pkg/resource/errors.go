/*
Copyright 2022 The Koordinator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package resource

import "errors"

// ErrOverCapacity is returned by Reserve when granting the request would
// push used above total on some node. Local to the candidate; never fatal.
var ErrOverCapacity = errors.New("resource: over capacity")

// ErrUnknownPath is returned when a resolved path does not resolve to any
// node in the namespace.
var ErrUnknownPath = errors.New("resource: unknown path")

// ErrUnknownToken is returned when an operation references a token that was
// never opened, or was already retired by commit/release.
var ErrUnknownToken = errors.New("resource: unknown or retired token")

// ErrTemplatePath is returned when an operation that requires a fully
// resolved path (Reserve) receives a template path instead.
var ErrTemplatePath = errors.New("resource: path is a template, not resolved")
