// Package querygraph builds the navigation graph of a supergraph: the states
// a query execution can be in, one per (type, subgraph) pair, and the moves
// between them. Field and downcast edges stay inside one subgraph, key edges
// jump to the same entity in another subgraph.
//
// The graph is built once per composition run and is read by the
// resolvability checks that follow the merge.
package querygraph
