// Package occupancy infers which rooms of a building are occupied, and by
// whom, from sparse motion/presence sensor triggers and phone location hints.
//
// The package implements a particle filter per tracked person: each
// PersonTracker holds a weighted multiset of room hypotheses that is advanced
// by a neighbor-walk motion model between observations and collapsed onto a
// room whenever a sensor sights the person directly. A shared SensorModel
// converts time-since-trigger into a likelihood that somebody is still in a
// room, with explicit presence overrides for sensors that report sustained
// occupancy. MultiPersonTracker owns the per-person trackers and the
// identifier bookkeeping (anonymous persons, phone associations) and is the
// only type embedding hosts need to touch.
//
// The companion package tracks holds the deterministic track association
// engine, which solves the same inference problem by stitching discrete
// sensor intervals into per-occupant paths. Both engines share a
// roomgraph.RoomGraph.
package occupancy
