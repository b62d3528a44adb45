// Package evaluation gates candidate models on held-out test metrics before
// they can be published.
package evaluation
