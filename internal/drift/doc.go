// Package drift compares a reference feature distribution against current
// traffic using per-column Kolmogorov-Smirnov tests and the Population
// Stability Index, and decides when the drifted share is large enough to
// recommend retraining.
package drift
