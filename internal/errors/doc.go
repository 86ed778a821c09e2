// Package errors provides coded, actionable errors for nodebuilder.
//
// Every failure a user can hit carries a stable code that maps to a short
// message and, where useful, a hint on how to fix it.
//
// # Error Codes
//
//   - E100-E119: manifest loading and validation
//   - E200-E219: filesystem work during a build
//   - E300-E319: external tools (bundler, compiler, WinSW, watcher)
//   - E400-E419: command line
//
// # Usage
//
//	err := errors.New("E301").
//	    WithDetail(stderr.String()).
//	    Wrap(runErr)
//
//	fmt.Print(err.Format())
//	// Output:
//	// X E301: Bundling failed
//	//   cause: exit status 1
//	//
//	//   ✘ [ERROR] Could not resolve "./missing"
package errors
