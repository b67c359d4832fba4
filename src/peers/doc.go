/*
Package peers implements the bounded peer table: the PeerRecord value type
and the PeerTable that owns upsert, deterministic replacement, eviction, and
seeded sampling over the set of known peers.

Sizing and replacement favor stable, responsive peers: the replacement score
is (consecutive_ping_failures, staleness, addr), so a peer is only dropped in
favor of a newcomer once it has accumulated failures or gone stale, and ties
break deterministically on address so that sampling outcomes are reproducible
under a fixed seed.
*/
package peers
