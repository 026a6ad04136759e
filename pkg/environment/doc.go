// Package environment defines the deployment environment domain model:
// the validated environment name, the state-independent context (user
// inputs, derived internal configuration, runtime outputs), the typed
// lifecycle phases with their transition methods, and the type-erased
// AnyState wrapper used for persistence.
//
// Phases form the lifecycle:
//
//	Created -> Provisioning -> Provisioned -> Configuring -> Configured
//	  -> Releasing -> Released -> Running
//
// with a terminal Destroyed phase reachable from every other phase, and
// one failure phase per fallible step (ProvisionFailed, ConfigureFailed,
// ReleaseFailed, RunFailed). Each phase is a distinct Go type and the
// only way to move between phases is a named transition method, so
// illegal phase sequences do not compile.
package environment
