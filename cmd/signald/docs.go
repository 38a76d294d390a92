package main

//go:generate swag init -g cmd/signald/main.go -o docs

// @title           Trade Signal API
// @version         0.1.0
// @description     Candle ingestion, MindsDB forecasts and ensemble BUY/SELL/HOLD signals.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
