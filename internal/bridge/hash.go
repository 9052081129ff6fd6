package bridge

import "github.com/agentworld/runtime/internal/codec"

func hashAny(v any) (string, error) {
	return codec.Hash(v)
}
