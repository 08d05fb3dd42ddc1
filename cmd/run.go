package cmd

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/flasharb/config"
	"github.com/michaelpento.lv/flasharb/engine"
	"github.com/michaelpento.lv/flasharb/ledger"
	"github.com/michaelpento.lv/flasharb/lender/flashpool"
	"github.com/michaelpento.lv/flasharb/lender/pooled"
	"github.com/michaelpento.lv/flasharb/types"
	"github.com/michaelpento.lv/flasharb/utils"
	"github.com/michaelpento.lv/flasharb/venue"
)

var watch bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a demo arbitrage against an in-memory market",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()

		if err := config.LoadEnv(); err != nil {
			log.Debug("no .env file loaded", zap.Error(err))
		}
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg.Logger = log

		eng, owner, tokenA, route, err := buildDemoMarket(cfg)
		if err != nil {
			return err
		}

		amount := new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))
		execOnce := func() {
			rec, err := eng.ExecuteArbitrage(cmd.Context(), owner, tokenA, amount, route)
			if err != nil {
				log.Warn("arbitrage failed", zap.Error(err))
				return
			}
			log.Info("arbitrage profit realized", zap.String("profit", rec.Profit.String()))
		}

		if !watch {
			execOnce()
			return nil
		}

		limiter := rate.NewLimiter(rate.Every(cfg.WatchInterval), 1)
		for {
			if err := limiter.Wait(cmd.Context()); err != nil {
				return nil
			}
			execOnce()
		}
	},
}

func init() {
	runCmd.Flags().BoolVar(&watch, "watch", false, "keep executing the route on an interval")
	rootCmd.AddCommand(runCmd)
}

// buildDemoMarket wires an in-memory ledger with two rate venues quoting the
// same pair at different prices, a zero-fee flash pool and a pooled lender,
// and an engine owned by the configured owner.
func buildDemoMarket(cfg *config.Config) (*engine.Engine, common.Address, common.Address, types.Route, error) {
	var zero common.Address
	log := cfg.Logger

	owner := common.HexToAddress(cfg.Owner)
	engineAddr := common.HexToAddress(cfg.EngineAddress)
	tokenA := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	reg := ledger.NewRegistry()
	eng, err := engine.New(engineAddr, owner, reg, log)
	if err != nil {
		return nil, zero, zero, nil, err
	}
	if err := eng.SetMinProfit(owner, cfg.MinProfitThreshold); err != nil {
		return nil, zero, zero, nil, err
	}

	liquidity := new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

	// Venue X quotes A:B at par, venue Y prices A at 0.9 B, so the round
	// trip A->B on X, B->A on Y is profitable after fees.
	venueX := common.HexToAddress("0x0000000000000000000000000000000000000e21")
	venueY := common.HexToAddress("0x0000000000000000000000000000000000000e22")
	px, err := venue.NewRatePool(venueX, tokenA, tokenB, 1, 1, cfg.VenueFeeBps, reg)
	if err != nil {
		return nil, zero, zero, nil, err
	}
	py, err := venue.NewRatePool(venueY, tokenA, tokenB, 90, 100, cfg.VenueFeeBps, reg)
	if err != nil {
		return nil, zero, zero, nil, err
	}
	for _, token := range []common.Address{tokenA, tokenB} {
		reg.Mint(token, venueX, liquidity)
		reg.Mint(token, venueY, liquidity)
	}
	eng.RegisterVenue(px)
	eng.RegisterVenue(py)

	flashAddr := common.HexToAddress("0x0000000000000000000000000000000000000f10")
	pooledAddr := common.HexToAddress("0x0000000000000000000000000000000000000f20")
	flash := flashpool.New(flashAddr, tokenA, tokenB, reg)
	pool := pooled.New(pooledAddr, cfg.PooledPremiumBps, reg)
	for _, token := range []common.Address{tokenA, tokenB} {
		reg.Mint(token, flashAddr, liquidity)
		reg.Mint(token, pooledAddr, liquidity)
	}
	eng.RegisterFundingSource(flash)
	eng.RegisterFundingSource(pool)

	route := types.Route{
		{Venue: venueX, ZeroForOne: true, TokenIn: tokenA, TokenOut: tokenB},
		{Venue: venueY, ZeroForOne: false, TokenIn: tokenB, TokenOut: tokenA},
	}
	return eng, owner, tokenA, route, nil
}
