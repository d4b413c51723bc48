// Package walker fetches a post's comment tree within depth and breadth
// bounds.
//
// The walk is depth-first and strictly parent-before-child: a node's
// replies are fetched only after the node itself, through a CommentSource
// that exposes per-node fetches. Non-author comments below the score
// floor are pruned with their whole subtree, and each node keeps at most
// a fixed number of non-author children. Comments by the post's own
// author are exempt from both limits so thread-owner clarifications
// survive down-votes and breadth caps.
//
// A failed reply fetch flags the parent SubtreeIncomplete and the walk
// moves on to siblings; only authorization failures and context
// cancellation abort a post's walk.
package walker
