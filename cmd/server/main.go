package main

import "smartcrm/internal/app"

// @title        SmartCRM API
// @version      1.0
// @description  CRM для малого бизнеса: лиды, цели, дашборд, аудит.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	app.Run()
}
