// Package emit writes the deployment artifacts of a build.
//
// Each emitter reads the validated configuration and produces a fixed set
// of files inside its target directory of the build directory, overwriting
// earlier contents:
//
//	build/
//	├── node/            bundle + copied files
//	├── docker/          bundle + copied files, Dockerfile, docker-compose.yml
//	├── linux-x64/
//	│   └── install/     <name>.service, <name>.sh
//	└── windows-x64/
//	    └── service/     service.exe (WinSW), service.xml
//
// Native executables are produced by package compile; emitters only add
// what surrounds them.
package emit
