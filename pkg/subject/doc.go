// Package subject models the artifact under gating evaluation.
//
// A subject is identified by an item type (koji_build, compose, ...) and an
// identifier (NVR, compose ID, container digest). Some subjects are known to
// the evidence stores under more than one reference form; for example a build
// reported as brew-build in one store and koji_build in another. The package
// tracks those auxiliary reference forms so that evidence queries and waiver
// matching cover all of them.
package subject
