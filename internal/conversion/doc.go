// Package conversion turns trained checkpoints into the dense inference
// artifact consumed by quantization and serving.
package conversion
