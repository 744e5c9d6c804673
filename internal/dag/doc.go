// Package dag implements the directed acyclic graph used to order template
// resources before conversion. Nodes are logical resource identifiers; an
// edge a->b means b depends on a. The graph rejects self-references at edge
// insertion time and exposes cycle detection over the combined explicit and
// implicit dependency edges.
package dag
