// Package tracks implements deterministic track association over room
// sensor events.
//
// Where the particle filter in the parent occupancy package keeps a
// probability cloud per known person, this engine works from the sensor side:
// every firing becomes an Event (one timestamped presence interval in a
// room), and a Manager stitches events into Tracks, each approximating one
// occupant's path through the building. Association is scored by shortest
// path distance on the shared room graph, with directional alignment and
// speed consistency as tie-breakers, so two people walking simultaneous
// trails through the house end up on separate tracks instead of one
// zig-zagging impossibility.
package tracks
