package omegga

import "github.com/wagiedev/omegga-sdk-go/internal/config"

// Transport moves newline-delimited records between the process and its
// peer. Implement this to run the client over something other than the
// process's own stdin/stdout (tests, pipes, subprocesses).
//
// The default implementation speaks over os.Stdin and os.Stdout.
// Custom transports can be injected via WithTransport.
type Transport = config.Transport
