package restyutil

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// DumpExchanges writes every completed exchange made by client to output.
// Files are named by sequence so a run can be read back in request order.
// A nil output makes this a no-op.
func DumpExchanges(client *resty.Client, output Output) {
	if output == nil {
		return
	}

	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		seq := atomic.AddUint64(&counter, 1)
		id := fmt.Sprintf("%04d-%s.txt", seq, strings.ToLower(res.Request.Method))
		output.Write(id, FormatExchange(res))
		return nil
	})
}
