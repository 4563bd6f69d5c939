// Package file provides the TOML-backed configuration store.
//
// Values live in ~/.sercha-rag/config.toml under flattened dot keys such as
// embedding.provider. Environment variables named by EnvName override the
// file, and a .env file next to the config is read on Load.
package file
