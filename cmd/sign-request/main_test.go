package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperswap/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperswap/pkg/crypto"
)

func TestBuild(t *testing.T) {
	signer := common.HexToAddress("0x5167")

	req, path, err := build(options{
		kind:      "create_order",
		sendToken: "0x000000000000000000000000000000000000000a",
		recvToken: "0x000000000000000000000000000000000000000b",
		send:      "5000000", recv: "500000", min: "100000",
		nonce: "3", deadline: "0",
	}, signer)
	require.NoError(t, err)
	require.Equal(t, "/orders", path)
	require.Equal(t, signer, req.Actor())
	require.Equal(t, "500000", req.(*crypto.CreateOrderEIP712).RecvAmount.String())

	req, path, err = build(options{kind: "swap", sendToken: "0x000000000000000000000000000000000000000a",
		recvToken: "0x000000000000000000000000000000000000000b", amount: "10", swapBy: "0", nonce: "1", deadline: "0"}, signer)
	require.NoError(t, err)
	require.Equal(t, "/swap", path)
	require.Equal(t, signer, req.(*crypto.SwapEIP712).Recipient)

	_, path, err = build(options{kind: "cancel_order", orderID: 7, nonce: "1", deadline: "0"}, signer)
	require.NoError(t, err)
	require.Equal(t, "/orders/7/cancel", path)
}

func TestBuildRejects(t *testing.T) {
	signer := common.HexToAddress("0x5167")

	_, _, err := build(options{kind: "transfer", nonce: "1", deadline: "0"}, signer)
	require.Error(t, err)

	_, _, err = build(options{kind: "create_order", sendToken: "zz", recvToken: "zz", send: "1", recv: "1", min: "0", nonce: "1", deadline: "0"}, signer)
	require.ErrorContains(t, err, "send-token")

	_, _, err = build(options{kind: "accept_order", amount: "-1", nonce: "1", deadline: "0"}, signer)
	require.ErrorContains(t, err, "amount")
}

func TestSignedOutputVerifies(t *testing.T) {
	s, err := crypto.GenerateKey()
	require.NoError(t, err)
	req, _, err := build(options{kind: "admin", action: transaction.ActionPause, value: "0", nonce: "9", deadline: "0"}, s.Address())
	require.NoError(t, err)

	v := transaction.NewVerifier(crypto.DefaultDomain(), nil)
	tx, err := transaction.NewSignedRequest(req)
	require.NoError(t, err)
	require.NoError(t, v.Sign(tx, s))
	got, err := v.Verify(tx)
	require.NoError(t, err)
	require.Equal(t, s.Address(), got.Signer)
	require.Equal(t, uint64(9), got.Nonce)
}
