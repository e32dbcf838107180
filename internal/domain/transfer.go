package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Origin identifies which side of a reconciliation produced a record.
type Origin string

const (
	OriginActual Origin = "ACTUAL" // historical on-chain trace
	OriginLocal  Origin = "LOCAL"  // local reproduction receipt
)

// String returns the string representation of Origin.
func (o Origin) String() string {
	return string(o)
}

// IsValid checks if the origin is a valid value.
func (o Origin) IsValid() bool {
	return o == OriginActual || o == OriginLocal
}

// TransferEvent is a decoded ERC-20 Transfer log.
// Created by the extractor and never mutated afterwards; Value must not be
// modified in place by consumers.
type TransferEvent struct {
	Token  common.Address // emitting contract
	From   common.Address
	To     common.Address
	Value  *big.Int // non-negative, arbitrary precision
	Origin Origin
}
