// Package llm abstracts the hosted generative model behind a narrow
// interface: prompt in, raw text or typed error out. The model call is the
// single point of non-determinism in the conversion pipeline, so everything
// downstream is written against the Client interface and tested with
// deterministic stubs.
//
// Two implementations are provided: the Amazon Bedrock Converse API and any
// OpenAI-compatible chat-completions endpoint. Both retry transient faults
// internally with exponential backoff up to a fixed cap and surface
// permanent faults (authorization, bad model ID, oversized payload)
// immediately without retry.
package llm
