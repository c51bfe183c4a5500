// Package e2e runs the Spider command-line tools end to end: a phantom
// series is written, dumped, and integrated, and the resulting TIA image is
// checked against its analytic value. The scenarios live in features/.
package e2e
