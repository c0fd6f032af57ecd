package produce

type Produce struct {
	OrphanService *OrphanProduceService
}

func InitProduce(channel Channel) *Produce {
	orphanService := InitOrphanProduceService(channel)
	if orphanService == nil {
		panic("Failed to initialize Orphan produce service")
	}

	return &Produce{
		OrphanService: orphanService,
	}
}
