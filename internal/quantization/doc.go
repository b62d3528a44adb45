// Package quantization compresses the float inference artifact to int8 and
// refuses to promote a quantized model whose predictions diverge from the
// float model.
package quantization
