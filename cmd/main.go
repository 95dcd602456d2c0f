package main

import (
    "backend/config"
    "backend/routes"
    "backend/services"
)

func main() {
    config.InitDB()
    services.InitObjectStore()
    r := routes.SetupRouter()
    r.Run(":8080")
}
