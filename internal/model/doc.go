// Package model defines the portable inference artifacts: the float dense
// model produced by converting a trained network (batch normalization folded
// in) and its int8 quantized counterpart, plus the benchmark report comparing
// the two.
package model
