// Package nn holds the trainable parameter type shared by optimizers and the
// code that computes gradients.
package nn
