// Package peers keeps track of the readings reported by the other nodes.
//
// While a node is master it folds every Response into an Index, keyed by the
// sender's address. Each peer counts once, with its latest values, and the
// Index keeps running sums so that averages never need a full scan.
package peers
