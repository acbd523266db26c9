/*
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

// Package options resolves process configuration: a flag whose default
// is read from an environment variable, so either surface can set it.
package options

import "os"

// Options holds the control plane's startup configuration.
type Options struct {
	// Bind is the address the HTTP surface listens on. Env: APP_BIND.
	Bind string
	// StoreAddr is the etcd-compatible store endpoint. Env: STORE_ADDR.
	StoreAddr string
	// Development switches the logger to a human-readable console encoder.
	Development bool
}

// WithDefaultString reads the named env var, or falls back to def if it
// is unset or empty.
func WithDefaultString(envVar, def string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return def
}

// Default returns the normative defaults: 0.0.0.0:8001 for the bind
// address, localhost:2379 for the store address, and human-readable
// logging whenever APP_ENV=development.
func Default() Options {
	return Options{
		Bind:        WithDefaultString("APP_BIND", "0.0.0.0:8001"),
		StoreAddr:   WithDefaultString("STORE_ADDR", "localhost:2379"),
		Development: WithDefaultString("APP_ENV", "") == "development",
	}
}
