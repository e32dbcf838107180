package repro

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"txrecon/internal/domain"
)

// EventDecoder decodes receipt logs emitted by the attack contracts into
// CustomEvents using their ABI.
type EventDecoder struct {
	abi       abi.ABI
	addresses map[common.Address]struct{} // empty: accept any emitter
}

// NewEventDecoder parses an ABI JSON document. When addresses are given,
// only logs emitted by them are decoded.
func NewEventDecoder(r io.Reader, addresses ...common.Address) (*EventDecoder, error) {
	parsed, err := abi.JSON(r)
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	d := &EventDecoder{abi: parsed, addresses: make(map[common.Address]struct{}, len(addresses))}
	for _, a := range addresses {
		d.addresses[a] = struct{}{}
	}
	return d, nil
}

// LoadEventDecoder reads the ABI from path.
func LoadEventDecoder(path string, addresses ...common.Address) (*EventDecoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open abi: %w", err)
	}
	defer f.Close()
	return NewEventDecoder(f, addresses...)
}

// Decode returns the events it recognizes, in log order, and the number of
// recognized logs that failed to decode.
func (d *EventDecoder) Decode(logs []*types.Log) ([]domain.CustomEvent, int) {
	var (
		out    []domain.CustomEvent
		failed int
	)
	for _, l := range logs {
		if l == nil || len(l.Topics) == 0 {
			continue
		}
		if len(d.addresses) > 0 {
			if _, ok := d.addresses[l.Address]; !ok {
				continue
			}
		}
		ev, err := d.abi.EventByID(l.Topics[0])
		if err != nil {
			continue
		}

		values := make(map[string]any)
		if err := ev.Inputs.UnpackIntoMap(values, l.Data); err != nil {
			failed++
			continue
		}
		var indexed abi.Arguments
		for _, in := range ev.Inputs {
			if in.Indexed {
				indexed = append(indexed, in)
			}
		}
		if err := abi.ParseTopicsIntoMap(values, indexed, l.Topics[1:]); err != nil {
			failed++
			continue
		}

		args := make(map[string]string, len(values))
		for k, v := range values {
			args[k] = FormatArg(v)
		}
		out = append(out, domain.CustomEvent{
			Name:    ev.Name,
			Address: l.Address.Hex(),
			Args:    args,
		})
	}
	return out, failed
}

// FormatArg renders a decoded ABI value for display.
func FormatArg(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case *big.Int:
		if x == nil {
			return "0"
		}
		return x.String()
	case common.Address:
		return x.Hex()
	case common.Hash:
		return x.Hex()
	case []byte:
		return hexutil.Encode(x)
	case [32]byte:
		return hexutil.Encode(x[:])
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []common.Address:
		parts := make([]string, len(x))
		for i, a := range x {
			parts[i] = a.Hex()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []*big.Int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = n.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprint(v)
	}
}

// EventNames lists the events known to the decoder, sorted.
func (d *EventDecoder) EventNames() []string {
	names := make([]string, 0, len(d.abi.Events))
	for name := range d.abi.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
