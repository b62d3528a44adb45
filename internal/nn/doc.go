// Package nn implements the default-prediction multilayer perceptron: dense
// layers with batch normalization, ReLU, and dropout, trained with minibatch
// Adam against binary cross-entropy.
package nn
