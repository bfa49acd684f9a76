// Package run implements the streaming tool-calling loop: it folds provider
// chunks into iteration results, executes model-issued tool calls, and loops
// until the model produces a plain answer or a bound is hit. One run handles
// one user turn; runs for different sessions execute concurrently, but work
// within a run is strictly sequential.
package run
