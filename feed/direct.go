package feed

import (
	"context"

	"github.com/vantalabs/vantage/errors"
)

// Tools is the injected module of direct-call functions used when no
// sources are registered for a data type. External tool packages
// implement whichever subset they support; unimplemented calls should
// return an error.
type Tools interface {
	GetStockPrice(ctx context.Context, ticker string) (interface{}, error)
	GetCompanyInfo(ctx context.Context, ticker string) (interface{}, error)
	GetCompanyNews(ctx context.Context, ticker string) (interface{}, error)
	GetMarketSentiment(ctx context.Context) (interface{}, error)
	GetNewsSentiment(ctx context.Context, ticker string) (interface{}, error)
	GetEconomicEvents(ctx context.Context) (interface{}, error)
}

// directCallName maps a data type to the tools function used for its
// direct-call fallback, for trace and stats labelling.
func directCallName(dataType string) string {
	switch dataType {
	case "price":
		return "get_stock_price"
	case "company_info":
		return "get_company_info"
	case "news":
		return "get_company_news"
	case "sentiment":
		return "get_market_sentiment"
	case "news_sentiment":
		return "get_news_sentiment"
	case "economic_events":
		return "get_economic_events"
	default:
		return ""
	}
}

// directCall resolves the fallback function for dataType on tools and
// invokes it.
func directCall(ctx context.Context, tools Tools, dataType, key string) (interface{}, error) {
	if tools == nil {
		return nil, errors.Wrapf(errors.ErrUnknownDataType, "no sources and no tools module for %q", dataType)
	}

	switch dataType {
	case "price":
		return tools.GetStockPrice(ctx, key)
	case "company_info":
		return tools.GetCompanyInfo(ctx, key)
	case "news":
		return tools.GetCompanyNews(ctx, key)
	case "sentiment":
		return tools.GetMarketSentiment(ctx)
	case "news_sentiment":
		return tools.GetNewsSentiment(ctx, key)
	case "economic_events":
		return tools.GetEconomicEvents(ctx)
	default:
		return nil, errors.Wrapf(errors.ErrUnknownDataType, "%q has no direct-call mapping", dataType)
	}
}
