// Package supervisor owns the lifecycle of a long-running network service.
//
// A Supervisor starts the service, forwards its module ports through a NAT
// gateway in the background, and runs an interactive command loop on the
// console until it is stopped:
//
//	s := supervisor.New(newService, supervisor.DefaultConfig(),
//	    supervisor.WithLogger(logger),
//	    supervisor.WithNAT(nattraversal.NewTraversal()),
//	)
//	defer s.Close()
//
//	err := s.Run(ctx, os.Args[1:])
//
// Run blocks until the command loop exits, either because an operator typed
// the stop command, Stop was called, or ctx was cancelled. Close waits for
// the loop to finish before disposing of the service, so nothing started by
// the supervisor is left running once it returns.
//
// NAT discovery and mapping failures are never fatal: they are logged and
// the service keeps running, possibly unreachable from outside the NAT.
package supervisor
