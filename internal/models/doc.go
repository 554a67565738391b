// Package models lists the OpenAI speech models available to an API key.
// It backs the --list-models flag so users can pick a value for
// --openai-model.
package models
