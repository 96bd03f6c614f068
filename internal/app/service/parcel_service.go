package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
	"parcel/internal/metrics"
	"parcel/internal/pkg/logger"
	"parcel/internal/pkg/utils"
)

// ParcelServiceImpl implements port.Parcel for one network selection.
type ParcelServiceImpl struct {
	selection     entity.NetworkSelection
	mode          entity.Mode
	netDef        entity.NetworkDefinition
	registry      port.NetworkRegistry
	provider      port.ChainAdapterProvider
	logger        port.Logger
	maxConcurrent int
	progress      port.ProgressFunc
}

// NewParcelService resolves the selected network and returns a Parcel bound to it.
// A custom RPC URL without a network name is treated as an unnamed EVM chain.
func NewParcelService(
	selection entity.NetworkSelection,
	mode entity.Mode,
	registry port.NetworkRegistry,
	provider port.ChainAdapterProvider,
	l port.Logger,
	maxConcurrent int,
	progress port.ProgressFunc,
) (port.Parcel, error) {
	var netDef entity.NetworkDefinition
	if strings.TrimSpace(selection.Network) == "" && selection.RPCURL != "" {
		netDef = entity.NetworkDefinition{
			Name:         "custom",
			Family:       entity.FamilyEVM,
			NativeSymbol: entity.UnknownNativeSymbol,
			Decimals:     18,
		}
	} else {
		def, err := registry.Resolve(selection.Network)
		if err != nil {
			return nil, err
		}
		netDef = def
	}
	if mode == "" {
		mode = entity.ModeSingle
	}
	if maxConcurrent < 0 {
		maxConcurrent = 0
	}
	return &ParcelServiceImpl{
		selection:     selection,
		mode:          mode,
		netDef:        netDef,
		registry:      registry,
		provider:      provider,
		logger:        l,
		maxConcurrent: maxConcurrent,
		progress:      progress,
	}, nil
}

// session is the adapter and resolved token of one call.
type session struct {
	batchID  string
	log      port.Logger
	adapter  port.ChainAdapter
	identity entity.NetworkIdentity
	token    entity.Token
}

func (s *ParcelServiceImpl) open(ctx context.Context, op entity.Operation, token entity.Token) (*session, error) {
	batchID := uuid.NewString()
	log := logger.With(s.logger, "batch_id", batchID, "operation", string(op))

	adapter, err := s.provider.Open(ctx, s.netDef, s.selection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", s.networkLabel(), err)
	}
	identity, err := adapter.Prepare(ctx)
	if err != nil {
		adapter.Close()
		return nil, fmt.Errorf("failed to prepare %s: %w", s.networkLabel(), err)
	}
	resolved, err := s.resolveToken(ctx, adapter, identity, token)
	if err != nil {
		adapter.Close()
		return nil, err
	}
	return &session{batchID: batchID, log: log, adapter: adapter, identity: identity, token: resolved}, nil
}

func (s *ParcelServiceImpl) networkLabel() string {
	if s.netDef.Identifier != "" {
		return s.netDef.Identifier
	}
	return s.selection.RPCURL
}

// resolveToken fills in registry data for tokens given by id and makes sure
// decimals are known before any amount math.
func (s *ParcelServiceImpl) resolveToken(ctx context.Context, adapter port.ChainAdapter, identity entity.NetworkIdentity, token entity.Token) (entity.Token, error) {
	if token.IsNative() && token.ID != "" && s.netDef.Identifier != "" {
		if known, ok := s.registry.FindToken(s.netDef.Identifier, token.ID); ok {
			token = known
		}
	}
	if token.Decimals != nil {
		return token, nil
	}
	if token.IsNative() {
		dec := identity.Decimals
		if dec == 0 {
			dec = s.netDef.Decimals
		}
		if dec == 0 {
			dec = 18
		}
		if token.Symbol == "" {
			token.Symbol = identity.NativeSymbol
		}
		return token.WithDecimals(dec), nil
	}
	meta, err := adapter.TokenMetadata(ctx, token.ContractAddress)
	if err != nil {
		return entity.Token{}, fmt.Errorf("failed to resolve decimals of token %s: %w", token.ContractAddress, err)
	}
	if token.Symbol == "" {
		token.Symbol = meta.Symbol
	}
	if token.Name == "" {
		token.Name = meta.Name
	}
	return token.WithDecimals(meta.Decimals), nil
}

// Split divides req.Amount evenly between the recipients and sends every share
// from one wallet. The remainder of the division goes to the first recipient.
func (s *ParcelServiceImpl) Split(ctx context.Context, req entity.SplitRequest) (entity.BatchResult, error) {
	if len(req.Recipients) == 0 {
		return entity.BatchResult{}, entity.ErrNoRecipients
	}
	if _, err := utils.ParseAmount(req.Amount); err != nil {
		return entity.BatchResult{}, err
	}

	sess, err := s.open(ctx, entity.OperationSplit, req.Token)
	if err != nil {
		return entity.BatchResult{}, err
	}
	defer sess.adapter.Close()
	metrics.BatchesTotal.WithLabelValues(sess.identity.Name(), string(entity.OperationSplit), string(s.mode)).Inc()

	total, err := utils.ToBaseUnits(req.Amount, *sess.token.Decimals)
	if err != nil {
		return entity.BatchResult{}, err
	}
	shares, err := utils.SplitEvenly(total, len(req.Recipients))
	if err != nil {
		return entity.BatchResult{}, err
	}

	batch := entity.BatchResult{
		BatchID:   sess.batchID,
		Operation: entity.OperationSplit,
		Network:   sess.identity,
		Results:   make([]entity.TransactionResult, len(req.Recipients)),
	}
	for i, to := range req.Recipients {
		batch.Results[i] = entity.TransactionResult{
			From:   req.Wallet.Address,
			To:     to,
			Amount: utils.FormatBaseUnits(shares[i], *sess.token.Decimals),
		}
	}
	sess.log.Info("Split started", "network", sess.identity.Name(), "token", sess.token.Label(),
		"recipients", len(req.Recipients), "total", req.Amount, "mode", s.mode)

	failAll := func(err error) (entity.BatchResult, error) {
		for i := range batch.Results {
			batch.Results[i].Error = err.Error()
			metrics.TransfersTotal.WithLabelValues(sess.identity.Name(), string(entity.OperationSplit), "failed").Inc()
		}
		sess.log.Error("Split aborted before any transfer", "error", err)
		s.report(len(batch.Results), len(batch.Results))
		return batch, nil
	}

	handle, err := sess.adapter.OpenWallet(ctx, req.Wallet)
	if err != nil {
		return failAll(err)
	}
	for i := range batch.Results {
		batch.Results[i].From = handle.Address()
	}
	if fc, ok := handle.(port.FundsChecker); ok {
		if err := fc.CheckFunds(ctx, sess.token, total); err != nil {
			return failAll(err)
		}
	}
	if err := handle.InitSequence(ctx); err != nil {
		return failAll(err)
	}

	// Sequences are allocated here, in input order, before any transfer starts.
	orders := make([]*entity.TransferOrder, len(req.Recipients))
	for i, to := range req.Recipients {
		if shares[i].Sign() <= 0 {
			batch.Results[i].Error = fmt.Sprintf("share of %s rounds to zero at %d decimals", req.Amount, *sess.token.Decimals)
			continue
		}
		seq, err := handle.NextSequence()
		if err != nil {
			batch.Results[i].Error = err.Error()
			continue
		}
		orders[i] = &entity.TransferOrder{To: to, Token: sess.token, Amount: shares[i], Sequence: seq}
	}

	s.run(ctx, sess, len(orders), batch.Results, func(ctx context.Context, i int) entity.TransactionResult {
		res := batch.Results[i]
		if orders[i] == nil {
			return res
		}
		return s.execute(ctx, sess, entity.OperationSplit, handle, *orders[i], res)
	})

	sess.log.Info("Split finished", "succeeded", batch.Succeeded(), "total", len(batch.Results))
	return batch, nil
}

// Merge sends from every sender to req.Receiver. Without an explicit amount
// each sender sends everything it can afford after fees.
func (s *ParcelServiceImpl) Merge(ctx context.Context, req entity.MergeRequest) (entity.BatchResult, error) {
	if len(req.Senders) == 0 {
		return entity.BatchResult{}, entity.ErrNoSenders
	}
	if strings.TrimSpace(req.Receiver) == "" {
		return entity.BatchResult{}, fmt.Errorf("%w: receiver address is empty", entity.ErrNoRecipients)
	}
	if req.Amount != nil {
		if _, err := utils.ParseAmount(*req.Amount); err != nil {
			return entity.BatchResult{}, err
		}
	}

	sess, err := s.open(ctx, entity.OperationMerge, req.Token)
	if err != nil {
		return entity.BatchResult{}, err
	}
	defer sess.adapter.Close()
	metrics.BatchesTotal.WithLabelValues(sess.identity.Name(), string(entity.OperationMerge), string(s.mode)).Inc()

	var explicit *entity.SendPlan
	if req.Amount != nil {
		amount, err := utils.ToBaseUnits(*req.Amount, *sess.token.Decimals)
		if err != nil {
			return entity.BatchResult{}, err
		}
		explicit = &entity.SendPlan{Amount: amount}
	}

	batch := entity.BatchResult{
		BatchID:   sess.batchID,
		Operation: entity.OperationMerge,
		Network:   sess.identity,
		Results:   make([]entity.TransactionResult, len(req.Senders)),
	}
	for i, sender := range req.Senders {
		batch.Results[i] = entity.TransactionResult{From: sender.Address, To: req.Receiver}
	}
	sess.log.Info("Merge started", "network", sess.identity.Name(), "token", sess.token.Label(),
		"senders", len(req.Senders), "explicit_amount", explicit != nil, "mode", s.mode)

	s.run(ctx, sess, len(req.Senders), batch.Results, func(ctx context.Context, i int) entity.TransactionResult {
		return s.mergeOne(ctx, sess, req.Senders[i], req.Receiver, explicit, batch.Results[i])
	})

	sess.log.Info("Merge finished", "succeeded", batch.Succeeded(), "total", len(batch.Results))
	return batch, nil
}

func (s *ParcelServiceImpl) mergeOne(
	ctx context.Context,
	sess *session,
	sender entity.Wallet,
	receiver string,
	explicit *entity.SendPlan,
	res entity.TransactionResult,
) entity.TransactionResult {
	fail := func(msg string) entity.TransactionResult {
		res.Error = msg
		metrics.TransfersTotal.WithLabelValues(sess.identity.Name(), string(entity.OperationMerge), "failed").Inc()
		sess.log.Warn("Merge sender failed", "from", res.From, "error", msg)
		return res
	}

	handle, err := sess.adapter.OpenWallet(ctx, sender)
	if err != nil {
		return fail(err.Error())
	}
	res.From = handle.Address()

	var plan entity.SendPlan
	if explicit != nil {
		plan = entity.SendPlan{Amount: new(big.Int).Set(explicit.Amount)}
	} else {
		plan, err = handle.PlanSweep(ctx, sess.token, receiver)
		if err != nil {
			return fail(err.Error())
		}
	}
	if plan.Amount == nil || plan.Amount.Sign() <= 0 {
		return fail(entity.MergeInsufficientMessage)
	}
	res.Amount = utils.FormatBaseUnits(plan.Amount, *sess.token.Decimals)

	if fc, ok := handle.(port.FundsChecker); ok {
		if err := fc.CheckFunds(ctx, sess.token, plan.Amount); err != nil {
			return fail(err.Error())
		}
	}
	if err := handle.InitSequence(ctx); err != nil {
		return fail(err.Error())
	}
	seq, err := handle.NextSequence()
	if err != nil {
		return fail(err.Error())
	}
	order := entity.TransferOrder{
		To:       receiver,
		Token:    sess.token,
		Amount:   plan.Amount,
		Sequence: seq,
		SweepAll: plan.SweepAll,
		GasLimit: plan.GasLimit,
	}
	return s.execute(ctx, sess, entity.OperationMerge, handle, order, res)
}

// execute submits one order and turns the outcome into a result.
func (s *ParcelServiceImpl) execute(
	ctx context.Context,
	sess *session,
	op entity.Operation,
	handle port.WalletHandle,
	order entity.TransferOrder,
	res entity.TransactionResult,
) entity.TransactionResult {
	started := time.Now()
	receipt, err := handle.Transfer(ctx, order)
	res.TxHash = receipt.TxHash
	if err != nil {
		res.Error = err.Error()
		sess.log.Warn("Transfer failed", "from", res.From, "to", order.To, "sequence", order.Sequence, "tx", receipt.TxHash, "error", err)
	} else {
		res.Succeeded = true
		res.GasUsed = receipt.GasUsed
		sess.log.Debug("Transfer confirmed", "from", res.From, "to", order.To, "sequence", order.Sequence, "tx", receipt.TxHash)
	}
	metrics.ObserveTransfer(sess.identity.Name(), string(op), res.Succeeded, started)
	return res
}

// run processes n participants, sequentially in single mode and through an
// errgroup in batch mode. A panicking participant becomes a failed result.
func (s *ParcelServiceImpl) run(ctx context.Context, sess *session, n int, results []entity.TransactionResult, job func(ctx context.Context, i int) entity.TransactionResult) {
	var (
		mu   sync.Mutex
		done int
	)
	one := func(i int) {
		defer func() {
			if r := recover(); r != nil {
				sess.log.Error("Participant panicked", "index", i, "panic", r)
				results[i].Succeeded = false
				results[i].Error = fmt.Sprintf("internal error: %v", r)
			}
			mu.Lock()
			done++
			d := done
			mu.Unlock()
			s.report(d, n)
		}()
		results[i] = job(ctx, i)
	}

	if s.mode != entity.ModeBatch {
		for i := 0; i < n; i++ {
			one(i)
		}
		return
	}

	var g errgroup.Group
	if s.maxConcurrent > 0 {
		g.SetLimit(s.maxConcurrent)
	}
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			one(i)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ParcelServiceImpl) report(done, total int) {
	if s.progress != nil {
		s.progress(done, total)
	}
}

// Balances reads the balance of req.Token for every address.
func (s *ParcelServiceImpl) Balances(ctx context.Context, req entity.BalanceRequest) ([]entity.BalanceResult, error) {
	addresses := utils.CleanList(req.Addresses)
	if len(addresses) == 0 {
		return []entity.BalanceResult{}, nil
	}
	sess, err := s.open(ctx, "balances", req.Token)
	if err != nil {
		return nil, err
	}
	defer sess.adapter.Close()
	return sess.adapter.Balances(ctx, sess.token, addresses)
}
